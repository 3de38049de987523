// Package weather holds the weather and time domain shared by the example
// programs: static city tables, the tools agents call, state helpers for
// user preferences and search history, model callbacks and builders for
// every tutorial agent tree.
//
// Tools never fail with Go errors for domain problems. They return a
// Result with Status "error" and a message the model can relay.
package weather
