// Package live runs the client execution environment over a WebSocket.
//
// Each connection owns a store and a client-mode preloader. The browser
// sends navigation intents; the session preloads them and streams the
// lifecycle and history actions back as JSON messages:
//
//	client                         server
//	{"type":"hello","session":id}  ->
//	                               <- {"type":"welcome","session":id,"state":{...}}
//	{"type":"navigate","url":"/a"} ->
//	                               <- {"type":"preload/started"}
//	                               <- {"type":"preload/finished"}
//	                               <- {"type":"history/push","location":{...}}
//
// A newer navigation supersedes an older one still preloading: the older
// session is cancelled and never commits. The hello message may carry the
// session ID printed into the server-rendered page, in which case the
// session resumes from the saved snapshot instead of an empty state.
//
// Each connection runs one read loop and one write loop. Only the write
// loop touches the connection for writing; everything else queues messages
// through a bounded buffer, and a client too slow to drain it is
// disconnected.
package live
