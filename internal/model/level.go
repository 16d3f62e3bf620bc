package model

import "fmt"

// Level is the persisted position of a dial session within the menu tree.
// The numeric values are stored as-is, so existing rows keep their meaning
// when new levels are added.
type Level int

const (
	LevelInitial              Level = 0
	LevelMainMenu             Level = 1
	LevelSelectBillingRecord  Level = 2
	LevelSelectAcademicRecord Level = 3
	LevelFeeStructureMenu     Level = 9
)

// String returns the symbolic name of the level.
func (l Level) String() string {
	switch l {
	case LevelInitial:
		return "INITIAL"
	case LevelMainMenu:
		return "MAIN_MENU"
	case LevelSelectBillingRecord:
		return "SELECT_BILLING_RECORD"
	case LevelSelectAcademicRecord:
		return "SELECT_ACADEMIC_RECORD"
	case LevelFeeStructureMenu:
		return "FEE_STRUCTURE_MENU"
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// IsValid reports whether the level is one of the known menu levels.
func (l Level) IsValid() bool {
	switch l {
	case LevelInitial, LevelMainMenu, LevelSelectBillingRecord,
		LevelSelectAcademicRecord, LevelFeeStructureMenu:
		return true
	}
	return false
}

// ParseLevel converts a stored integer into a Level. Unknown values are
// rejected so a corrupted row never silently lands on a random screen.
func ParseLevel(v int) (Level, error) {
	l := Level(v)
	if !l.IsValid() {
		return LevelInitial, fmt.Errorf("unknown level %d", v)
	}
	return l, nil
}
