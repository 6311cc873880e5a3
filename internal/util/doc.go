// Package util provides small helpers shared by the mcp-gate packages.
//
// Key utilities:
//   - SafeTruncate: truncates codes, states and tokens before they are logged
//   - MaskEmail: hides most of the local part of an email address in logs
//   - JoinURL: joins a base URL and an absolute path without doubling slashes
package util
