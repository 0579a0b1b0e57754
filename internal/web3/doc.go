// Package web3 houses blockchain connectivity utilities: the chain client
// contract consumed by the action executors, per-network chain definitions
// loaded from YAML, and the signer abstraction that keeps private keys out
// of the orchestration layer.
package web3
