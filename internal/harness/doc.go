// Package harness runs translation scenarios against a catalog.
//
// A scenario is a model file, a target version and the outcome the
// translation must produce. Scenarios replace hand-kept before/after model
// pairs: the model is decoded, translated by the engine, recorded in an
// in-memory translation log and checked.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: mech_vent_rename
//	description: "What this scenario validates"
//	model: |
//	  OS:Version,
//	    {00000000-0000-4000-8000-000000000000}, !- Handle
//	    3.10.0;                                 !- Version Identifier
//	  ...
//	target: 3.10.1
//	expect:
//	  version: 3.10.1
//	  modified: 1
//	assertions:
//	  - type: field_equals
//	    handle: "{00000000-0000-4000-8000-000000000001}"
//	    field: Outdoor Air Method
//	    value: ZoneSum
//	golden: true
//
// model_file may replace model; it is resolved relative to the scenario.
// A scenario that expects a failure names the error code:
//
//	expect:
//	  error: UNSUPPORTED_FUTURE_VERSION
//
// # Assertion Types
//
//   - field_equals: a record's field renders as the given text
//   - record_count: the output holds exactly N records of a type
//   - record_absent: no output record has the handle
//   - entry_count: the report holds exactly N entries of a kind
//   - idempotent: translating the output again changes nothing
//
// # Deterministic Testing
//
// Scenarios run with a sequential handle generator and a fresh log, so
// the rendered report is stable and can be compared to a golden file
// under testdata/golden.
package harness
