package mux

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/okiba/tstap/internal/protocol"
)

// harness runs a Mux over in-memory pipes with the test playing both the
// editor and the child.
type harness struct {
	editorIn  *protocol.Writer // test -> mux, editor side
	editorOut *protocol.Reader // mux -> test, editor side
	childIn   *protocol.Reader // frames the mux forwarded to the child
	childOut  *protocol.Writer // scripted child responses

	closeEditor func()
	done        chan error
}

func newHarness(t *testing.T, proc *Processor) *harness {
	t.Helper()

	edInR, edInW := io.Pipe()
	edOutR, edOutW := io.Pipe()
	chInR, chInW := io.Pipe()
	chOutR, chOutW := io.Pipe()

	m := New(edInR, edOutW, chInW, chOutR, proc)
	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	t.Cleanup(func() {
		edInW.Close()
		chOutW.Close()
	})

	return &harness{
		editorIn:    protocol.NewWriter(edInW),
		editorOut:   protocol.NewReader(edOutR),
		childIn:     protocol.NewReader(chInR),
		childOut:    protocol.NewWriter(chOutW),
		closeEditor: func() { edInW.Close() },
		done:        done,
	}
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("mux did not stop")
		return nil
	}
}

func TestMux_PassthroughForwardsVerbatim(t *testing.T) {
	h := newHarness(t, newTestProcessor())

	// Unusual key order and spacing must survive untouched.
	payload := []byte(`{"seq": 42,  "command":"completions","arguments":{"file":"a.ts","line":3}}`)
	if err := h.editorIn.WriteMessage(payload); err != nil {
		t.Fatal(err)
	}

	got, err := h.childIn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Errorf("forwarded payload mutated:\n got %s\nwant %s", got, payload)
	}

	// The child's answer travels back to the editor byte for byte.
	reply := []byte(`{"seq":1,"type":"response","command":"completions","request_seq":42,"success":true}`)
	if err := h.childOut.WriteMessage(reply); err != nil {
		t.Fatal(err)
	}
	back, err := h.editorOut.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(back) != string(reply) {
		t.Errorf("relayed payload mutated:\n got %s\nwant %s", back, reply)
	}
}

func TestMux_LocalCommandNeverForwarded(t *testing.T) {
	h := newHarness(t, newTestProcessor())

	if err := h.editorIn.WriteMessage([]byte(`{"command":"SYMBOL_LOCATIONS","seq":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := h.editorIn.WriteMessage([]byte(`{"command":"ping","seq":2}`)); err != nil {
		t.Fatal(err)
	}

	// Forwarding preserves order, so if SYMBOL_LOCATIONS had been forwarded
	// it would arrive before the ping.
	got, err := h.childIn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var cmd protocol.Command
	if err := json.Unmarshal(got, &cmd); err != nil {
		t.Fatal(err)
	}
	if cmd.Command != "ping" {
		t.Fatalf("child received %q, want the ping only", cmd.Command)
	}

	// The editor still gets a synthesized answer.
	raw, err := h.editorOut.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var resp protocol.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Command != protocol.CmdSymbolLocations || !resp.Success {
		t.Errorf("unexpected synthesized response: %+v", resp)
	}
	if resp.RequestSeq != 1 {
		t.Errorf("RequestSeq = %d, want 1", resp.RequestSeq)
	}
}

func TestMux_WiretapObservesThenForwards(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mod.ts", "export function before() {}\n")

	proc := newTestProcessor()
	if err := proc.Prime([]string{path}); err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, proc)

	writeFile(t, dir, "mod.ts", "export function after() {}\n")
	args, _ := json.Marshal(protocol.ReloadArgs{File: path})
	reload, _ := json.Marshal(protocol.Command{Command: protocol.CmdReload, Seq: 5, Arguments: args})
	if err := h.editorIn.WriteMessage(reload); err != nil {
		t.Fatal(err)
	}

	// The reload still reaches the child, verbatim.
	got, err := h.childIn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(reload) {
		t.Errorf("forwarded reload mutated: %s", got)
	}

	// Observation happened before forwarding, so the index is current by the
	// time the child sees the frame.
	names := map[string]bool{}
	for _, d := range proc.index.Definitions() {
		names[d.Name] = true
	}
	if names["before"] || !names["after"] {
		t.Errorf("index not refreshed by reload: %v", names)
	}
}

func TestMux_ReloadFailureStillForwards(t *testing.T) {
	h := newHarness(t, newTestProcessor())

	// The file does not exist; observation fails but forwarding must not.
	reload := []byte(`{"command":"reload","seq":8,"arguments":{"file":"/does/not/exist.ts"}}`)
	if err := h.editorIn.WriteMessage(reload); err != nil {
		t.Fatal(err)
	}
	got, err := h.childIn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(reload) {
		t.Errorf("forwarded reload mutated: %s", got)
	}
}

func TestMux_MalformedDroppedNotForwarded(t *testing.T) {
	h := newHarness(t, newTestProcessor())

	for _, bad := range [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"seq":1}`),
		[]byte(`{"command":"reload"}`),
		[]byte(`{"command":7,"seq":1}`),
	} {
		if err := h.editorIn.WriteMessage(bad); err != nil {
			t.Fatal(err)
		}
	}
	if err := h.editorIn.WriteMessage([]byte(`{"command":"ping","seq":2}`)); err != nil {
		t.Fatal(err)
	}

	got, err := h.childIn.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}
	var cmd protocol.Command
	if err := json.Unmarshal(got, &cmd); err != nil {
		t.Fatal(err)
	}
	if cmd.Command != "ping" {
		t.Fatalf("child received %q; malformed frames must be dropped", cmd.Command)
	}
}

func TestMux_EditorCloseStopsCleanly(t *testing.T) {
	h := newHarness(t, newTestProcessor())
	h.closeEditor()
	if err := h.wait(t); err != nil {
		t.Fatalf("Run() = %v, want nil on editor close", err)
	}
}

func TestMux_SymbolLocationsAfterReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mod.ts", "export const old = 1;\n")

	proc := newTestProcessor()
	if err := proc.Prime([]string{path}); err != nil {
		t.Fatal(err)
	}
	h := newHarness(t, proc)

	writeFile(t, dir, "mod.ts", "export default function foo() {}\n")
	args, _ := json.Marshal(protocol.ReloadArgs{File: path})
	reload, _ := json.Marshal(protocol.Command{Command: protocol.CmdReload, Seq: 1, Arguments: args})
	if err := h.editorIn.WriteMessage(reload); err != nil {
		t.Fatal(err)
	}
	if _, err := h.childIn.ReadMessage(); err != nil {
		t.Fatal(err)
	}

	if err := h.editorIn.WriteMessage([]byte(`{"command":"SYMBOL_LOCATIONS","seq":2}`)); err != nil {
		t.Fatal(err)
	}
	raw, err := h.editorOut.ReadMessage()
	if err != nil {
		t.Fatal(err)
	}

	var resp struct {
		Success bool                         `json:"success"`
		Body    protocol.SymbolLocationsBody `json:"body"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success {
		t.Fatal("SYMBOL_LOCATIONS failed")
	}
	if len(resp.Body.SymbolLocations) != 1 {
		t.Fatalf("got %d symbols, want 1", len(resp.Body.SymbolLocations))
	}
	sym := resp.Body.SymbolLocations[0]
	if sym.Name != "foo" || !sym.Default || sym.Location.Filename != path {
		t.Errorf("unexpected symbol %+v", sym)
	}
}
