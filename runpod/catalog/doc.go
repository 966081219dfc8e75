// Package catalog discovers, caches and categorizes the provider's public
// models.
//
// Model ids are sorted into text, image, video and audio by an ordered
// keyword rule table. When discovery fails callers fall back to
// FallbackModels, a small built-in catalog.
package catalog
