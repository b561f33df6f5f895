// Package mux sits on the protocol path between the editor and the child
// analysis server: it answers a small set of commands from the interposer's
// own file model, observes reloads, and relays everything else untouched.
package mux

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/rs/zerolog/log"

	"github.com/okiba/tstap/internal/document"
	"github.com/okiba/tstap/internal/imports"
	"github.com/okiba/tstap/internal/protocol"
	"github.com/okiba/tstap/internal/store"
	"github.com/okiba/tstap/internal/treesitter"
)

// Processor executes locally handled and wiretapped commands against the
// snapshot store and the symbol index.
type Processor struct {
	docs  *document.Store
	index *treesitter.Index
	cache *store.Cache
	seq   atomic.Int64
}

// NewProcessor wires the processor to its long-lived state. cache may be nil.
func NewProcessor(docs *document.Store, index *treesitter.Index, cache *store.Cache) *Processor {
	return &Processor{docs: docs, index: index, cache: cache}
}

func (p *Processor) nextSeq() int {
	return int(p.seq.Add(1))
}

// HandleLocal executes a locally handled command and returns the synthesized
// response. Failures convert to a failure response here; they never escape
// and the command is never forwarded.
func (p *Processor) HandleLocal(cmd protocol.Command) protocol.Response {
	switch cmd.Command {
	case protocol.CmdSymbolLocations:
		return p.symbolLocations(cmd)
	case protocol.CmdOrganizeImports:
		return p.organizeImports(cmd)
	default:
		// Classifier and processor disagree only on programmer error.
		return p.failure(cmd, fmt.Sprintf("command %q is not locally handled", cmd.Command))
	}
}

// symbolLocations flattens every tracked file's exports into one response.
// The prefix argument is advisory: the caller filters while rendering, so the
// full corpus is returned on purpose.
func (p *Processor) symbolLocations(cmd protocol.Command) protocol.Response {
	var args protocol.SymbolLocationsArgs
	if len(cmd.Arguments) > 0 {
		if err := json.Unmarshal(cmd.Arguments, &args); err != nil {
			return p.failure(cmd, "bad arguments: "+err.Error())
		}
	}

	defs := p.index.Definitions()
	body := protocol.SymbolLocationsBody{SymbolLocations: make([]protocol.SymbolLocation, 0, len(defs))}
	for _, d := range defs {
		body.SymbolLocations = append(body.SymbolLocations, protocol.SymbolLocation{
			Name:     d.Name,
			Location: protocol.Location{Filename: d.File, Pos: d.Pos},
			Default:  d.Default,
		})
	}

	log.Debug().Int("symbols", len(defs)).Str("prefix", args.Prefix).Msg("mux: symbol locations served")
	resp := protocol.NewResponse(p.nextSeq(), cmd, true)
	resp.Body = body
	return resp
}

// organizeImports refreshes the file's snapshot and runs the import sorter.
// The rewritten text travels back in the response body; applying it to the
// buffer is the editor's job, nothing is written to disk here.
func (p *Processor) organizeImports(cmd protocol.Command) protocol.Response {
	var args protocol.OrganizeImportsArgs
	if err := json.Unmarshal(cmd.Arguments, &args); err != nil {
		return p.failure(cmd, "bad arguments: "+err.Error())
	}
	if args.Filename == "" {
		return p.failure(cmd, "missing filename argument")
	}

	unlock := p.docs.LockPath(args.Filename)
	defer unlock()

	snap, err := p.docs.Update(args.Filename, "")
	if err != nil {
		resp := p.failure(cmd, err.Error())
		resp.Body = err.Error()
		return resp
	}

	text, err := imports.Organize(snap)
	if err != nil {
		resp := p.failure(cmd, err.Error())
		resp.Body = err.Error()
		return resp
	}

	if log.Debug().Enabled() && text != snap.Text {
		edits := myers.ComputeEdits(span.URIFromPath(snap.Path), snap.Text, text)
		unified := gotextdiff.ToUnified(snap.Path, snap.Path+" (organized)", snap.Text, edits)
		log.Debug().Str("file", snap.Path).Msgf("mux: imports organized\n%s", fmt.Sprint(unified))
	}

	resp := protocol.NewResponse(p.nextSeq(), cmd, true)
	resp.Body = text
	return resp
}

// ObserveReload refreshes the snapshot (optionally from the tmpfile holding
// unsaved buffer contents) and rebuilds the file's index wholesale. The
// returned error is for logging only: the caller forwards the reload
// upstream no matter what, so the real server's model stays current.
func (p *Processor) ObserveReload(cmd protocol.Command) error {
	var args protocol.ReloadArgs
	if err := json.Unmarshal(cmd.Arguments, &args); err != nil {
		return fmt.Errorf("mux: reload arguments: %w", err)
	}
	if args.File == "" {
		return errors.New("mux: reload without file argument")
	}

	unlock := p.docs.LockPath(args.File)
	defer unlock()

	snap, err := p.docs.Update(args.File, args.Tmpfile)
	if err != nil {
		return err
	}
	return p.indexSnapshot(snap)
}

// indexSnapshot parses a snapshot (through the cache when possible) and
// replaces that file's index.
func (p *Processor) indexSnapshot(snap document.Snapshot) error {
	hash := store.HashText(snap.Text)
	if exports, ok := p.cache.Get(snap.Path, hash); ok {
		p.index.ReplaceFile(snap.Path, exports)
		return nil
	}

	exports, err := treesitter.ParseSource(snap.Path, []byte(snap.Text))
	if err != nil {
		return err
	}
	p.index.ReplaceFile(snap.Path, exports)
	p.cache.Put(snap.Path, hash, exports)
	return nil
}

func (p *Processor) failure(cmd protocol.Command, message string) protocol.Response {
	resp := protocol.NewResponse(p.nextSeq(), cmd, false)
	resp.Message = message
	return resp
}
