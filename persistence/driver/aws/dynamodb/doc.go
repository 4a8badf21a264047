// Package dynamodb provides a key/value store backed by an Amazon DynamoDB
// table.
package dynamodb
