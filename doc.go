// Package automatedhome is a rule-driven home automation hub built on NATS.
//
// Devices publish their state onto the bus under slash-path topics like
// /kitchen/lamp/power. The hub accumulates the latest value per topic,
// evaluates a set of declarative rules whenever a value actually changes,
// and publishes the actions of every matching rule back onto the bus, where
// the devices (or the hub itself) pick them up.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│           NATS bus                  │  device state in,
//	│     (slash-path topic space)        │  actions out
//	└──────┬──────────────────────▲───────┘
//	       │ intake               │ dispatch
//	┌──────▼──────────────────────┴───────┐
//	│            Engine                   │  state store, coercion,
//	│  (serialize, dedupe, evaluate)      │  rule evaluation
//	└──────┬──────────────────────────────┘
//	       │ observes
//	┌──────▼──────────────────────────────┐
//	│       Collaborators                 │  liveness tracker,
//	│  (persist, liveness, gateway)       │  persistence, HTTP/WS
//	└─────────────────────────────────────┘
//
// Messages are processed strictly one at a time. A message whose raw value
// equals the stored value for its topic changes nothing and triggers no
// evaluation; this is what keeps rule-published actions from looping
// forever through the bus.
//
// Rules live in a YAML document that is polled for changes and hot-reloaded
// without a restart. Expressions reference topics in identifier form
// (kitchen_lamp_power == 1) or path form (/kitchen/lamp/power == 1); values
// are coerced from their wire text to integers, reals, booleans or
// structured literals before evaluation.
//
// The topic namespace under /global/ belongs to the hub: it carries the
// device liveness record and the minute clock. Reserved topics flow through
// state and rules like any other but are excluded from persistence and
// liveness tracking.
//
// The cmd/automatedhome binary wires the packages into a runnable hub; each
// package is usable on its own for embedding.
package automatedhome
