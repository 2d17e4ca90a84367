package ibf

import "errors"

// Result is the outcome of running a reply through the full pipeline.
// Failure is empty on success; otherwise it names the stage that
// rejected the reply and Issues (or Err, for decode failures) says why.
type Result struct {
	Failure Category
	Issues  []Issue
	Err     error
	Decoded Decoded
}

// OK reports whether the reply was accepted.
func (r Result) OK() bool { return r.Failure == "" }

// Check validates raw structurally, salvages the reply block, decodes it
// and validates its content against the requested ids of batch
// expectedBatch out of expectedTotal.
func Check(raw string, requested []string, expectedBatch, expectedTotal int) Result {
	if issues := ValidateFileFormat(raw); len(issues) > 0 {
		return Result{Failure: CategoryStructural, Issues: issues}
	}

	d, err := Decode(ExtractFromResponse(raw))
	if err != nil {
		var de *DecodeError
		if !errors.As(err, &de) {
			de = &DecodeError{Msg: err.Error()}
		}
		return Result{
			Failure: CategoryDecode,
			Err:     de,
			Issues:  []Issue{{Line: de.Line, Kind: DecodeFailure, Message: de.Error(), Fix: "Ensure file follows IBF format exactly"}},
		}
	}

	var meta *Metadata
	if d.HasHeader {
		meta = &d.Meta
	}
	if issues := Validate(requested, d.Entries, expectedBatch, expectedTotal, meta); len(issues) > 0 {
		return Result{Failure: CategoryContent, Issues: issues, Decoded: d}
	}
	return Result{Decoded: d}
}
