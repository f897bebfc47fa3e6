package session

import (
	"errors"
	"fmt"
	"io"
	"os"

	"screen-capture-extractor/src/clipboard"
	"screen-capture-extractor/src/record"
	"screen-capture-extractor/src/singleinstance"
)

// ClipboardTarget copies the saved rows to the clipboard as JSON.
type ClipboardTarget struct{}

func (ClipboardTarget) OnSuccess(saved Saved) error {
	data, err := record.RowsJSON(saved.Rows)
	if err != nil {
		return err
	}
	return clipboard.Write(string(data))
}

func (ClipboardTarget) OnFailure(err error) error {
	return nil
}

// StdoutTarget prints a status line, or the saved rows as JSON.
type StdoutTarget struct {
	Writer io.Writer
	JSON   bool
}

func (t StdoutTarget) OnSuccess(saved Saved) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	if !t.JSON {
		_, err := fmt.Fprintln(w, Describe(saved))
		return err
	}
	data, err := record.RowsJSON(saved.Rows)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func (t StdoutTarget) OnFailure(err error) error {
	return nil
}

// DelegatedTarget answers a client connected through the single-instance endpoint.
type DelegatedTarget struct {
	Conn           singleinstance.Conn
	OutputToStdout bool
	// CopyToClipboard also puts the rows on the resident's clipboard.
	CopyToClipboard bool
}

func (t DelegatedTarget) OnSuccess(saved Saved) error {
	if t.Conn == nil {
		return errors.New("delegated target missing connection")
	}
	if t.CopyToClipboard {
		if err := (ClipboardTarget{}).OnSuccess(saved); err != nil {
			return fmt.Errorf("clipboard error: %w", err)
		}
	}
	if !t.OutputToStdout {
		return t.Conn.RespondSuccess(Describe(saved))
	}
	data, err := record.RowsJSON(saved.Rows)
	if err != nil {
		return err
	}
	return t.Conn.RespondSuccess(string(data))
}

func (t DelegatedTarget) OnFailure(err error) error {
	if t.Conn == nil {
		return nil
	}
	if err == nil {
		return t.Conn.RespondError("unknown session error")
	}
	return t.Conn.RespondError(err.Error())
}

// Targets fans a result out to several targets. The first error wins.
type Targets []ResultTarget

func (ts Targets) OnSuccess(saved Saved) error {
	for _, t := range ts {
		if err := t.OnSuccess(saved); err != nil {
			return err
		}
	}
	return nil
}

func (ts Targets) OnFailure(err error) error {
	var first error
	for _, t := range ts {
		if e := t.OnFailure(err); e != nil && first == nil {
			first = e
		}
	}
	return first
}
