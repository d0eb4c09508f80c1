package variationapi

import (
	"fmt"

	"github.com/c360studio/doppel/script"
	"github.com/c360studio/semstreams/message"
)

// RequestType identifies variation request payloads on the stream.
var RequestType = message.Type{
	Domain:   "doppel",
	Category: "request",
	Version:  "v1",
}

// ResultType identifies variation result payloads.
var ResultType = message.Type{
	Domain:   "doppel",
	Category: "result",
	Version:  "v1",
}

// Identity is one subject to generate variations for. Name is the
// only required field; DOB and the address pair unlock the matching
// variation kinds.
type Identity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	DOB     string `json:"dob,omitempty"`
	City    string `json:"city,omitempty"`
	Country string `json:"country,omitempty"`
}

// Request asks for variations across a batch of identities, steered by
// a free-text instruction.
type Request struct {
	RequestID   string     `json:"request_id"`
	Requester   string     `json:"requester"`
	Instruction string     `json:"instruction,omitempty"`
	Identities  []Identity `json:"identities"`
}

// Schema returns the message type for requests.
func (r *Request) Schema() message.Type {
	return RequestType
}

// Validate checks required request fields.
func (r *Request) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	if r.Requester == "" {
		return fmt.Errorf("requester is required")
	}
	if len(r.Identities) == 0 {
		return fmt.Errorf("at least one identity is required")
	}
	for i, ident := range r.Identities {
		if ident.Name == "" {
			return fmt.Errorf("identity %d: name is required", i)
		}
	}
	return nil
}

// Row is one combined variation: a name joined with a date of birth
// and address when the source identity carried them.
type Row struct {
	Name    string  `json:"name"`
	Source  string  `json:"source"`
	Rule    string  `json:"rule,omitempty"`
	Score   float64 `json:"score,omitempty"`
	DOB     string  `json:"dob,omitempty"`
	Address string  `json:"address,omitempty"`
}

// IdentityResult carries the variations for a single identity. A
// failed identity still fills its rows by repeating the identity as
// given, with Error recording why.
type IdentityResult struct {
	ID            string        `json:"id"`
	Seed          string        `json:"seed"`
	Script        script.Script `json:"script"`
	Variations    []Row         `json:"variations"`
	RuleCount     int           `json:"rule_count"`
	FreeCount     int           `json:"free_count"`
	FallbackCount int           `json:"fallback_count"`
	Shortfall     bool          `json:"shortfall"`
	ElapsedMS     int64         `json:"elapsed_ms"`
	Error         string        `json:"error,omitempty"`
}

// Response is the full answer to a request, one result per admitted
// identity in submission order.
type Response struct {
	RequestID  string           `json:"request_id"`
	Requester  string           `json:"requester"`
	Identities []IdentityResult `json:"identities"`
	ElapsedMS  int64            `json:"elapsed_ms"`
}

// Schema returns the message type for responses.
func (r *Response) Schema() message.Type {
	return ResultType
}

// Validate checks required response fields.
func (r *Response) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	return nil
}
