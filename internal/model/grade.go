package model

import (
	"regexp"
	"strconv"
)

// SubjectScore is one subject parsed out of a compact result string.
type SubjectScore struct {
	Subject string `json:"subject"`
	Score   int    `json:"score"`
	Grade   string `json:"grade"`
}

var subjectScoreRe = regexp.MustCompile(`([A-Z]+):(\d+)`)

// ParseSubjectScores parses "ENG:45KIS:66MAT:76" into per-subject scores.
// Fragments that do not match SUBJECT:SCORE are skipped.
func ParseSubjectScores(s string) []SubjectScore {
	var out []SubjectScore
	for _, m := range subjectScoreRe.FindAllStringSubmatch(s, -1) {
		score, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		out = append(out, SubjectScore{Subject: m[1], Score: score, Grade: Grade(score)})
	}
	return out
}

// gradeBands lists the lower bound of each grade, highest first.
var gradeBands = []struct {
	min   int
	grade string
}{
	{80, "A"}, {75, "A-"}, {70, "B+"}, {65, "B"}, {60, "B-"}, {55, "C+"},
	{50, "C"}, {45, "C-"}, {40, "D+"}, {35, "D"}, {30, "D-"},
}

// Grade maps a percentage score onto the KCSE-style letter grade.
func Grade(score int) string {
	for _, b := range gradeBands {
		if score >= b.min {
			return b.grade
		}
	}
	return "E"
}
