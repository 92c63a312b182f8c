// Package credential resolves API keys for cloud providers. A Resolver is
// injected wherever a key is needed; sources are consulted in order,
// typically the environment and then the encrypted store in sqlstore.
package credential
