package protocol

import "encoding/json"

// Command names the interposer answers or observes. This enumeration is the
// single extension point for new locally handled commands.
const (
	CmdSymbolLocations = "SYMBOL_LOCATIONS"
	CmdOrganizeImports = "ORGANIZE_IMPORTS"
	CmdReload          = "reload"
)

// Class is the routing decision for one inbound command.
type Class int

const (
	// ClassPassthrough commands are forwarded to the child verbatim.
	ClassPassthrough Class = iota
	// ClassLocal commands are answered by the interposer and never forwarded.
	ClassLocal
	// ClassWiretap commands are observed locally and still forwarded.
	ClassWiretap
)

// String returns a short label for the class.
func (c Class) String() string {
	switch c {
	case ClassLocal:
		return "local"
	case ClassWiretap:
		return "wiretap"
	default:
		return "passthrough"
	}
}

// FormatError reports a message that cannot be interpreted as a command.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "malformed command: " + e.Reason
}

// envelope mirrors Command with pointer fields so missing keys are
// distinguishable from zero values.
type envelope struct {
	Command   *string         `json:"command"`
	Seq       *int            `json:"seq"`
	Arguments json.RawMessage `json:"arguments"`
}

// Classify parses one raw message and decides its routing class. A message
// without both a command and a seq field fails with a *FormatError.
// Classification is total over the command name: unknown names are
// pass-through.
func Classify(raw []byte) (Command, Class, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Command{}, ClassPassthrough, &FormatError{Reason: "not a JSON object: " + err.Error()}
	}
	if env.Command == nil {
		return Command{}, ClassPassthrough, &FormatError{Reason: "missing command field"}
	}
	if env.Seq == nil {
		return Command{}, ClassPassthrough, &FormatError{Reason: "missing seq field"}
	}

	cmd := Command{
		Command:   *env.Command,
		Seq:       *env.Seq,
		Arguments: env.Arguments,
	}

	switch cmd.Command {
	case CmdSymbolLocations, CmdOrganizeImports:
		return cmd, ClassLocal, nil
	case CmdReload:
		return cmd, ClassWiretap, nil
	default:
		return cmd, ClassPassthrough, nil
	}
}
