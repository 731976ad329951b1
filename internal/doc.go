// Package internal contains the implementation packages for contactform.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - contact: the form component, its state and its event loop
//   - challenge: the bot-check widget driven over the page connection
//   - sender: delivery of submissions to the mail endpoint
//   - toast: transient notifications with auto-close
//   - renderer: templ components for the page, form, links and toasts
//   - server: HTTP handlers, the WebSocket session and security headers
//   - profile: the social link list and its hot reload
//   - config: layered configuration through viper
//   - errors, logging, validation, version, watcher: shared plumbing
//
// # Request Flow
//
// The server renders the page once per request. Each browser tab then opens
// a WebSocket; the session owns one contact.Component and one toast
// container, translates client messages into component operations and
// streams state diffs and toast markup back.
package internal
