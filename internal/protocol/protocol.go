// Package protocol implements the framed-JSON command protocol spoken on both
// sides of the interposer: editor <-> tstap and tstap <-> the child analysis
// server. Frames are a Content-Length header, a blank line, and the JSON
// payload terminated by a newline.
package protocol

import "encoding/json"

// Command is the inbound request envelope. Identity is the command name;
// a command is immutable once received.
type Command struct {
	Command   string          `json:"command"`
	Seq       int             `json:"seq"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Response is the outbound envelope for answers synthesized by the
// interposer. RequestSeq always carries the originating command's seq;
// Seq lives in the interposer's own sequence space, independent of the
// child server's.
type Response struct {
	Seq        int    `json:"seq"`
	Type       string `json:"type"`
	Command    string `json:"command"`
	RequestSeq int    `json:"request_seq"`
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	Body       any    `json:"body,omitempty"`
}

// NewResponse builds a response correlated to cmd. seq is the interposer's
// own sequence number for this message.
func NewResponse(seq int, cmd Command, success bool) Response {
	return Response{
		Seq:        seq,
		Type:       "response",
		Command:    cmd.Command,
		RequestSeq: cmd.Seq,
		Success:    success,
	}
}

// SymbolLocation is one entry in a SYMBOL_LOCATIONS response body.
type SymbolLocation struct {
	Name     string   `json:"name"`
	Location Location `json:"location"`
	Default  bool     `json:"default,omitempty"`
}

// Location is a byte-offset position inside a file.
type Location struct {
	Filename string `json:"filename"`
	Pos      int    `json:"pos"`
}

// SymbolLocationsBody is the body of a SYMBOL_LOCATIONS response.
type SymbolLocationsBody struct {
	SymbolLocations []SymbolLocation `json:"symbolLocations"`
}

// SymbolLocationsArgs are the arguments of a SYMBOL_LOCATIONS command. The
// prefix is advisory: the response always carries the full corpus and the
// caller filters while rendering.
type SymbolLocationsArgs struct {
	Prefix string `json:"prefix"`
}

// OrganizeImportsArgs are the arguments of an ORGANIZE_IMPORTS command.
type OrganizeImportsArgs struct {
	Filename string `json:"filename"`
}

// ReloadArgs are the arguments of a reload command. Tmpfile, when set, is an
// alternate backing path holding unsaved buffer contents; the logical file
// identity stays File.
type ReloadArgs struct {
	File    string `json:"file"`
	Tmpfile string `json:"tmpfile,omitempty"`
}
