// Package internal contains the implementation packages for jsxsite.
//
// # Package Organization
//
//   - site: one project; wires everything below and runs build passes
//   - compiler: JSX to CommonJS with esbuild, loaded into goja
//   - jsx: the automatic JSX runtime and HTML serialisation inside goja
//   - deps: dependency graph and mtime fingerprints of page sources
//   - cache: FIFO component cache keyed by path and fingerprint
//   - renderer: cache-aware render pipeline with doctype post-processing
//   - build: Sass/CSS and JavaScript asset orchestration
//   - watcher: recursive fsnotify watching with debounced batches
//   - server: dev server with live reload and an error overlay
//   - config, logging, errors, types, version: shared plumbing
//
// # Control Flow
//
// A render request goes tracker fingerprint, cache lookup, and on a miss
// compile, record dependencies, then insert. The watcher feeds changed paths
// to Site.PreWatch and Site.Build; the dev server is notified of each pass.
package internal
