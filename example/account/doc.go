// Package account is a small end-to-end usage example of the engine: a bank
// account aggregate with genesis, deposit, withdraw and close commands, its
// reducers, a synchronous balance read model and asynchronous notification
// sagas. It doubles as the integration fixture for the engine tests.
package account
