/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

// Package tweetfeedgo bridges a tweet stream into a host event loop; see
// pkg/tweetfeed.
package tweetfeedgo

// Version is the semantic version of the module.
// For release builds, run: just version-update
const Version = "0.1.0"
