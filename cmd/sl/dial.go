package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/schoolline/internal/events"
	"github.com/alfredjeanlab/schoolline/internal/idgen"
	"github.com/alfredjeanlab/schoolline/internal/model"
	"github.com/alfredjeanlab/schoolline/internal/provider"
	"github.com/alfredjeanlab/schoolline/internal/provider/fixture"
	"github.com/alfredjeanlab/schoolline/internal/store/memory"
	"github.com/alfredjeanlab/schoolline/internal/ui"
	"github.com/alfredjeanlab/schoolline/internal/ussd"
)

const defaultServiceCode = "*384*1#"

var dialCmd = &cobra.Command{
	Use:     "dial",
	Short:   "Simulate a handset dialing the service code",
	GroupID: "ussd",
	Long: `Simulate a handset session against the webhook.

Each reply is printed as a screen, CON while the menu waits for input.
In interactive mode type the next keystroke at the prompt; the session ends on an END reply, on EOF, or
on Ctrl-C. With --input the keystrokes are taken from a *-separated
script, the way the gateway accumulates them, e.g. --input 4*2.

--local runs the engine in-process against the built-in fixture school
instead of calling a server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !ui.ShouldUseColor() {
			ui.ForceNoColor()
		}
		phone, _ := cmd.Flags().GetString("phone")
		code, _ := cmd.Flags().GetString("code")
		sessionID, _ := cmd.Flags().GetString("session")
		script, _ := cmd.Flags().GetString("input")
		local, _ := cmd.Flags().GetBool("local")

		if sessionID == "" {
			id, err := idgen.SimSessionID()
			if err != nil {
				return err
			}
			sessionID = id
		}

		var sender turnSender = slClient
		if local {
			s, err := newLocalSender()
			if err != nil {
				return err
			}
			sender = s
		}

		d := &dialer{
			sender: sender,
			out:    cmd.OutOrStdout(),
			base: model.InboundTurn{
				SessionID:   sessionID,
				ServiceCode: code,
				PhoneNumber: phone,
			},
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if cmd.Flags().Changed("input") {
			transcript, err := d.runScript(ctx, script)
			if jsonOutput && transcript != nil {
				return printJSON(cmd.OutOrStdout(), transcript)
			}
			return err
		}
		return d.runInteractive(ctx, cmd.InOrStdin(), ui.StdinIsTerminal())
	},
}

func init() {
	dialCmd.Flags().String("phone", "+254724027217", "caller phone number")
	dialCmd.Flags().String("code", defaultServiceCode, "USSD service code")
	dialCmd.Flags().String("session", "", "session ID (default: generated)")
	dialCmd.Flags().String("input", "", "keystroke script, e.g. 1 or 4*2 (non-interactive)")
	dialCmd.Flags().Bool("local", false, "run against an in-process engine with fixture data")
}

// turnSender delivers one gateway turn. *client.HTTPClient implements it.
type turnSender interface {
	Dial(ctx context.Context, turn model.InboundTurn) (string, error)
}

// localSender runs turns through an in-process engine.
type localSender struct {
	engine *ussd.Engine
}

func newLocalSender() (*localSender, error) {
	engine, err := ussd.New(ussd.Options{
		Sessions:  memory.New(memory.Options{}),
		Providers: provider.FromDirectory(fixture.New()),
		Publisher: events.NoopPublisher{},
		Logger:    slog.New(slog.DiscardHandler),
	})
	if err != nil {
		return nil, err
	}
	return &localSender{engine: engine}, nil
}

func (s *localSender) Dial(ctx context.Context, turn model.InboundTurn) (string, error) {
	return s.engine.Handle(ctx, turn), nil
}

// exchange is one request/reply pair in a dial transcript.
type exchange struct {
	Text  string `json:"text"`
	Reply string `json:"reply"`
}

// dialer plays the gateway: it accumulates keystrokes into the text field
// and stops at the first END reply.
type dialer struct {
	sender turnSender
	out    io.Writer
	base   model.InboundTurn
	keys   []string
}

func (d *dialer) send(ctx context.Context) (exchange, bool, error) {
	turn := d.base
	turn.Text = strings.Join(d.keys, ussd.Separator)
	reply, err := d.sender.Dial(ctx, turn)
	if err != nil {
		return exchange{}, true, err
	}
	return exchange{Text: turn.Text, Reply: reply}, !strings.HasPrefix(reply, "CON "), nil
}

// runScript replays script one keystroke at a time, starting with the
// initial dial.
func (d *dialer) runScript(ctx context.Context, script string) ([]exchange, error) {
	var steps []string
	if script != "" {
		steps = strings.Split(script, ussd.Separator)
	}

	var transcript []exchange
	for i := 0; ; i++ {
		x, done, err := d.send(ctx)
		if err != nil {
			return transcript, err
		}
		transcript = append(transcript, x)
		if !jsonOutput {
			d.printScreen(x)
		}
		if done || i == len(steps) {
			return transcript, nil
		}
		d.keys = append(d.keys, steps[i])
	}
}

func (d *dialer) runInteractive(ctx context.Context, in io.Reader, prompt bool) error {
	scanner := bufio.NewScanner(in)
	for {
		x, done, err := d.send(ctx)
		if err != nil {
			return err
		}
		d.printScreen(x)
		if done {
			return nil
		}
		if prompt {
			fmt.Fprint(d.out, ui.RenderMuted("> "))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		d.keys = append(d.keys, strings.TrimSpace(scanner.Text()))
	}
}

func (d *dialer) printScreen(x exchange) {
	label := x.Text
	if label == "" {
		label = d.base.ServiceCode
	}
	fmt.Fprintln(d.out, ui.RenderMuted("# "+label))
	fmt.Fprint(d.out, ui.RenderReply(x.Reply))
}
