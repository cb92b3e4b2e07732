package chat

import (
	"fmt"
	"io"
)

// Renderer is the display surface the controller drives. Render calls
// always carry the full accumulated buffer; surfaces that prefer deltas
// track what they have already shown.
type Renderer interface {
	RenderThinking(buffer string)
	RenderAnswer(buffer string)
	// CollapseThinking signals the transition from reasoning to
	// answering, fired on the first non-empty answer delta.
	CollapseThinking()
	ShowError(message string)
	// RestoreInput returns the user's typed text after a cancelled or
	// failed exchange so no keystrokes are lost.
	RestoreInput(text string)
}

// TextRenderer writes the stream to a plain writer, printing only what
// has not been shown yet. Used by the one-shot ask command.
type TextRenderer struct {
	Out io.Writer

	thinkingShown int
	answerShown   int
	inThinking    bool
}

func NewTextRenderer(out io.Writer) *TextRenderer {
	return &TextRenderer{Out: out}
}

func (r *TextRenderer) RenderThinking(buffer string) {
	if len(buffer) <= r.thinkingShown {
		return
	}
	if !r.inThinking {
		fmt.Fprint(r.Out, "── thinking ──\n")
		r.inThinking = true
	}
	fmt.Fprint(r.Out, buffer[r.thinkingShown:])
	r.thinkingShown = len(buffer)
}

func (r *TextRenderer) RenderAnswer(buffer string) {
	if len(buffer) <= r.answerShown {
		return
	}
	fmt.Fprint(r.Out, buffer[r.answerShown:])
	r.answerShown = len(buffer)
}

func (r *TextRenderer) CollapseThinking() {
	if r.inThinking {
		fmt.Fprint(r.Out, "\n──────────────\n")
		r.inThinking = false
	}
}

func (r *TextRenderer) ShowError(message string) {
	fmt.Fprintf(r.Out, "\nerror: %s\n", message)
}

func (r *TextRenderer) RestoreInput(string) {}
