// The [devqa] package wires the synchronization engine of the DevQA client.
//
// DevQA keeps all state in a remote, schemaless record store reached over
// HTTP. The store offers no transactions, no uniqueness constraints and
// eventually consistent list results. The engine builds the client's
// guarantees on top of it.
//
// # Sessions
//
// A [Session] owns one instance of every component for one signed-in
// principal:
//
//   - the Identity Resolver maps auth claims to a user record, creating it
//     on first sign-in ([github.com/devqa/devqa.go/pkg/identity]);
//   - the Vote Ledger records at most one vote per voter and target and
//     bumps the target's counter ([github.com/devqa/devqa.go/pkg/votes]);
//   - the Badge Awarder grants badges idempotently and polls past index lag
//     ([github.com/devqa/devqa.go/pkg/badges]);
//   - the Feed Synchronizer pages, searches and filters questions and keeps
//     a local vote overlay ([github.com/devqa/devqa.go/pkg/feed]);
//   - the points ledger and level projection
//     ([github.com/devqa/devqa.go/pkg/points]);
//   - the Notification Sink that shows badge awards
//     ([github.com/devqa/devqa.go/pkg/notify]).
//
// Side effects that must not fail the user's action (points, badges) run
// on a background job queue ([github.com/devqa/devqa.go/pkg/jobs]).
//
// # Connecting
//
// Use [Dial] with a loaded [github.com/devqa/devqa.go/pkg/config.Config] to
// build the store connection, then [NewSession]:
//
//	cfg, err := config.Load("devqa.yaml")
//	...
//	con, err := devqa.Dial(cfg, log, nil)
//	...
//	sess := devqa.NewSession(con, devqa.OptionsFromConfig(cfg))
//	defer sess.Close(context.Background())
//	sess.Auth.SignIn(claims)
//
// The UI talks to a session through [github.com/devqa/devqa.go/pkg/bridge].
package devqa
