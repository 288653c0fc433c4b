// Package testsupport provides helpers shared by tests.
package testsupport
