// Package google handles OAuth2 authentication against Google services.
// Tokens are cached per account under the user cache directory; service
// accounts are supported through a credentials JSON file for headless
// deployments.
package google
