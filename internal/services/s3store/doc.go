// Package s3store adapts the S3 API to the pipeline's object store
// interface.
package s3store
