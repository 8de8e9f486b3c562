//go:build !production

package middleware

// devBypassCompiled enables the development route allow-list in builds
// without the production tag.
const devBypassCompiled = true
