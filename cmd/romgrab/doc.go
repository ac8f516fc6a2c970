// Package main hosts the romgrab CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into calls on the
// api.Service: catalog searches, downloads by session index, catalog id, or
// slug, boxart fetches, history listings and exports, cache maintenance, and
// configuration scaffolding. The status and logs commands read configuration
// only and never open the service. It centralizes configuration resolution and
// logger setup so subcommands only deal with flags and rendering.
//
// Each invocation owns one search session. Index references such as "#2"
// therefore only resolve when the same invocation ran a search first, which
// is what `download --search` does.
//
// Keep this package lean: add functionality to the internal packages first,
// then surface it here.
package main
