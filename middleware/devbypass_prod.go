//go:build production

package middleware

const devBypassCompiled = false
