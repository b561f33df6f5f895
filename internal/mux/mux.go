package mux

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/okiba/tstap/internal/protocol"
)

// errEditorClosed marks a clean end of the editor stream.
var errEditorClosed = errors.New("mux: editor stream closed")

// Mux wires the editor's input through the classifier into the child's
// input, and the child's output back to the editor. Framing is preserved in
// both directions; forwarded commands reach the child in the exact order
// they arrived.
type Mux struct {
	editorIn  *protocol.Reader
	editorOut *protocol.Writer
	childIn   *protocol.Writer
	childOut  *protocol.Reader
	proc      *Processor

	local sync.WaitGroup
}

// New builds a multiplexer over the four protocol streams.
func New(editorIn io.Reader, editorOut io.Writer, childIn io.Writer, childOut io.Reader, proc *Processor) *Mux {
	return &Mux{
		editorIn:  protocol.NewReader(editorIn),
		editorOut: protocol.NewWriter(editorOut),
		childIn:   protocol.NewWriter(childIn),
		childOut:  protocol.NewReader(childOut),
		proc:      proc,
	}
}

// Run processes both streams until the editor closes its end (clean
// shutdown) or a stream fails (fatal). It never returns on a local
// processing failure: those become failure responses or log lines. The
// first stream to stop decides the outcome; the other loop is left blocked
// on its read and dies with the process, there is no half-synchronized
// degraded mode to keep alive.
func (m *Mux) Run(ctx context.Context) error {
	errc := make(chan error, 2)
	go func() { errc <- m.editorLoop() }()
	go func() { errc <- m.childLoop() }()

	select {
	case err := <-errc:
		if errors.Is(err, errEditorClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// editorLoop reads, classifies, and routes every editor command. Exactly one
// goroutine reads the editor stream and exactly this goroutine writes the
// child's input, so forwarded commands keep their relative order.
func (m *Mux) editorLoop() error {
	defer m.local.Wait()

	for {
		raw, err := m.editorIn.ReadMessage()
		if err == io.EOF {
			log.Info().Msg("mux: editor closed its stream")
			return errEditorClosed
		}
		if err != nil {
			return err
		}

		cmd, class, cerr := protocol.Classify(raw)
		if cerr != nil {
			// One bad message dies alone: dropped, never forwarded, never
			// fatal.
			log.Warn().Err(cerr).Msg("mux: dropping malformed message")
			continue
		}

		switch class {
		case protocol.ClassLocal:
			m.local.Add(1)
			go func() {
				defer m.local.Done()
				resp := m.proc.HandleLocal(cmd)
				if err := m.editorOut.WriteResponse(resp); err != nil {
					log.Error().Err(err).Str("command", cmd.Command).Msg("mux: write synthesized response")
				}
			}()

		case protocol.ClassWiretap:
			// Local observation first, forwarding second: a local failure
			// must never block the command from reaching the real server.
			if err := m.proc.ObserveReload(cmd); err != nil {
				log.Error().Err(err).Int("seq", cmd.Seq).Msg("mux: reload observation failed")
			}
			if err := m.childIn.WriteMessage(raw); err != nil {
				return err
			}

		default:
			if err := m.childIn.WriteMessage(raw); err != nil {
				return err
			}
		}
	}
}

// childLoop relays every frame of child output to the editor verbatim. The
// shared editor writer serializes frames against synthesized responses.
func (m *Mux) childLoop() error {
	for {
		raw, err := m.childOut.ReadMessage()
		if err == io.EOF {
			return errors.New("mux: child closed its stream")
		}
		if err != nil {
			return err
		}
		if err := m.editorOut.WriteMessage(raw); err != nil {
			return err
		}
	}
}
