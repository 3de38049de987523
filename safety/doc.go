// Package safety implements the safety layer wrapped around weather agents.
//
// The input side is a Filter that detects blocked terms in user text and
// a Metrics record kept in session state under "safety_metrics". The output
// side is a Masker that hides e-mail addresses and phone numbers in model
// responses before they are emitted.
package safety
