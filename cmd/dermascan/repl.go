package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"dermascan-be/pkg/session"

	"github.com/fatih/color"
)

const helpText = `Commands:
  /camera        start the camera
  /capture       take a photo from the camera
  /file <path>   use an image file
  /analyze       analyze the current image
  /chat          ask follow-up questions about the analysis
  /back          go back one step
  /restart       start over
  /quit          exit
Anything else is sent to the assistant while chatting.`

// REPL drives a session.Controller from line input.
type REPL struct {
	controller *session.Controller
	out        io.Writer
}

func (r *REPL) Run(ctx context.Context, in *bufio.Scanner) error {
	r.prompt()
	for in.Scan() {
		if ctx.Err() != nil {
			break
		}
		if quit := r.Handle(ctx, in.Text()); quit {
			break
		}
		r.prompt()
	}
	r.controller.StopCamera()
	return in.Err()
}

// Handle runs one input line and reports whether the user asked to quit.
// Errors are already surfaced through the controller's notifier.
func (r *REPL) Handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	command, arg, _ := strings.Cut(line, " ")
	switch command {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/camera":
		if r.controller.StartCamera(ctx) == nil {
			fmt.Fprintln(r.out, "Camera is live. Type /capture to take a photo.")
		}
	case "/capture":
		if r.controller.CaptureFrame() == nil {
			fmt.Fprintln(r.out, "Photo captured. Type /analyze to continue.")
		}
	case "/file":
		if r.controller.SelectFile(strings.TrimSpace(arg)) == nil {
			fmt.Fprintln(r.out, "Image loaded. Type /analyze to continue.")
		}
	case "/analyze":
		r.analyze(ctx)
	case "/chat":
		if r.controller.StartChat() == nil {
			fmt.Fprintln(r.out, "Ask a question about your analysis.")
		}
	case "/back":
		r.controller.Back()
	case "/restart":
		r.controller.Restart()
	default:
		if strings.HasPrefix(command, "/") {
			color.Yellow("Unknown command %s. Type /help.", command)
			return false
		}
		r.send(ctx, line)
	}
	return false
}

func (r *REPL) analyze(ctx context.Context) {
	fmt.Fprintln(r.out, "Analyzing...")
	analysis, _ := r.controller.Analyze(ctx)
	if analysis == nil {
		return
	}
	fmt.Fprintf(r.out, "\n%s\n\nConfidence: %d%%\n", analysis.RawText, analysis.Confidence)
	fmt.Fprintln(r.out, "Type /chat to ask questions or /back to choose another image.")
}

func (r *REPL) send(ctx context.Context, text string) {
	if r.controller.State() != session.Conversing {
		color.Yellow("Type /chat after an analysis to talk to the assistant.")
		return
	}

	_, err := r.controller.SendMessage(ctx, text, func(delta string) {
		fmt.Fprint(r.out, delta)
	})
	fmt.Fprintln(r.out)
	if errors.Is(err, session.ErrChatInFlight) {
		color.Yellow("The assistant is still replying.")
	}
}

func (r *REPL) prompt() {
	fmt.Fprintf(r.out, "[%s] > ", r.controller.View())
}
