// Package collab implements HTTP clients for the external collaborator
// services consumed by the synchronization core: conversation history
// (list/save/load/delete), speech-to-text upload, text-to-speech
// synthesis, and directory browsing.
//
// None of these are part of the core itself; the core depends only on
// interfaces (session.HistoryService, session.Speaker) and this package
// provides the concrete implementations. All calls are plain
// request/response over HTTP with bearer-token auth.
package collab
