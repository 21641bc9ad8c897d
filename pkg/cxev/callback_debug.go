/*
 * MIT License
 * Copyright (c) 2023 Mitchell Hashimoto
 * Copyright (c) 2026 Crrow
 */

package cxev

// DebugCallbackCount returns the number of live callback registrations.
func DebugCallbackCount() int {
	count := 0
	callbackRegistry.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
