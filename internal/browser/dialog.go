package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/v0xg/webreplay/internal/dom"
)

// pumpDialogs subscribes to dialog-opening events on a page and buffers the
// most recent one. Dialogs block page JS until answered, so at most one can
// be pending.
func (s *Session) pumpDialogs(page *rod.Page) {
	ctx, cancel := context.WithCancel(context.Background())
	prev := s.stop
	s.stop = func() {
		cancel()
		if prev != nil {
			prev()
		}
	}

	go page.Context(ctx).EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		select {
		case s.dialogs <- dom.Dialog{Type: string(e.Type), Message: e.Message}:
		default:
		}
	})()
}

// DialogPending reports whether an unanswered dialog is buffered. A pointer
// click that opens an alert can time out on the protocol level even though it
// worked; the pending dialog disambiguates that case.
func (s *Session) DialogPending() bool {
	return len(s.dialogs) > 0
}

// WaitDialog blocks until a dialog opens or the timeout elapses.
func (s *Session) WaitDialog(timeout time.Duration) (dom.Dialog, error) {
	select {
	case d := <-s.dialogs:
		return d, nil
	case <-time.After(timeout):
		return dom.Dialog{}, fmt.Errorf("no dialog appeared within %s", timeout)
	}
}

// HandleDialogAction answers the open dialog. For prompts, text is submitted
// as the prompt input when accepting.
func (s *Session) HandleDialogAction(accept bool, text string) error {
	err := proto.PageHandleJavaScriptDialog{
		Accept:     accept,
		PromptText: text,
	}.Call(s.page)
	if err != nil {
		return fmt.Errorf("handle dialog: %w", err)
	}
	return nil
}
