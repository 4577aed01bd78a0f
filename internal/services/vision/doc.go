// Package vision provides an optional image captioning client backed by an
// OpenRouter-compatible vision model. The feature is off unless an API key is
// configured; media enrichment proceeds without captions when it is absent.
package vision
