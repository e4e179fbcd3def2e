package subject

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAlreadyExecuted is returned when a subject is evaluated a second time.
var ErrAlreadyExecuted = errors.New("subject was already used to execute assertions")

// Fact is one line of diagnostic context attached to a failure.
type Fact struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Failure is a failed check. It is a logical outcome for reporting, carrying
// enough facts to locate the offending entry without rerunning.
type Failure struct {
	Message string `json:"message"`
	Facts   []Fact `json:"facts,omitempty"`
	cause   error
}

// Fail builds a failure with alternating key/value fact pairs.
// A trailing key without a value is dropped.
func Fail(message string, kv ...string) *Failure {
	f := &Failure{Message: message}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Facts = append(f.Facts, Fact{Key: kv[i], Value: kv[i+1]})
	}
	return f
}

func (f *Failure) Error() string {
	if len(f.Facts) == 0 {
		return f.Message
	}
	var b strings.Builder
	b.WriteString(f.Message)
	for _, fact := range f.Facts {
		fmt.Fprintf(&b, "\n    %s: %s", fact.Key, fact.Value)
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.cause
}

// Fact returns the value of the first fact with the given key.
func (f *Failure) Fact(key string) (string, bool) {
	for _, fact := range f.Facts {
		if fact.Key == key {
			return fact.Value, true
		}
	}
	return "", false
}

// with returns a failure that prefixes facts to err's own. A non-Failure err
// becomes the message and stays reachable through Unwrap.
func with(message string, err error, kv ...string) *Failure {
	out := Fail(message, kv...)
	var inner *Failure
	if errors.As(err, &inner) {
		out.Facts = append(out.Facts, Fact{Key: "Check", Value: inner.Message})
		out.Facts = append(out.Facts, inner.Facts...)
		out.cause = inner.cause
		return out
	}
	if err != nil {
		out.Facts = append(out.Facts, Fact{Key: "Check", Value: err.Error()})
		out.cause = err
	}
	return out
}
