// Package comprehend adapts Amazon Comprehend PII detection to the
// pipeline's redactor interface.
package comprehend
