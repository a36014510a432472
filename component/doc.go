// Package component provides the shared self-description and lifecycle
// contracts used by mayara's core building blocks (NIC inventory, the
// discovery locator, radar sessions, the spoke pipeline and the registry).
//
// # Overview
//
// Every long-running piece of the core implements Discoverable so it can be
// introspected uniformly: what it is (Meta), what network endpoints it binds
// (InputPorts/OutputPorts), and how healthy it currently is (Health,
// DataFlow). Components that also participate in the supervised startup/
// shutdown sequence additionally implement LifecycleComponent.
//
// This is intentionally much smaller than a general component framework:
// mayara has a fixed, small set of components wired together by
// cmd/mayara, not a plugin system with runtime factory registration.
package component
