// Package identifier defines the contracts shared by the pidops identifier
// core: identifier configurations, registrar credentials, entity snapshots,
// parsed registrar results and the stores that resolve them.
//
// # Resolution Flow
//
// A caller names an identifier configuration. A ConfigStore resolves the
// name to a Config describing which entities (entity type and bundle) carry
// the identifier, in which field, and which state key holds the registrar
// credentials. A CredentialStore resolves the state key to Credentials.
//
// Both lookups happen on every operation. Credentials rotate and identifier
// configurations change between operations, so implementations must not
// cache results across calls.
//
// # Error Handling
//
// Two error types cover everything that is not a registrar answer:
//   - ConfigError when a configuration name or state key does not resolve
//   - TransportError when the registrar could not be reached
//
// A registrar rejection is not an error. It is a Result with Success set to
// false and the raw response body as its Message.
package identifier
