package store

var RetryReason = retryReason
