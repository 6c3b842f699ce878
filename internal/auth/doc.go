// Package auth owns the Spotify credential lifecycle.
//
// # Session states
//
// A [Manager] moves through [Unauthenticated], [Authorizing], [Authorized] and [Refreshing].
// A refresh either lands back in [Authorized] with a new generation or, when the accounts
// service declares the grant dead (invalid_grant or invalid_client), clears the stored
// credential and returns to [Unauthenticated].
//
// # Sign-in
//
// [Manager.SignIn] uses the authorization code flow with PKCE (S256). The authorization URL is
// handed to a [UserAgent]; [LoopbackAgent] opens the system browser and waits for the redirect on
// a local listener. The callback's state must match the one that was sent, otherwise
// [shared.ErrAuthStateMismatch] is returned. A denied consent or a cancelled context surfaces as
// [shared.ErrAuthCancelled] and leaves the previous session untouched.
//
// # Scopes
//
// Callers that discover a missing scope call [Manager.MarkNeedsReconsent]. The next sign-in
// requests the union of the default and outstanding scopes and asks Spotify to show the consent
// dialog again. Outstanding scopes are persisted separately from the session so they survive a
// sign-out.
//
// Sessions are persisted through a [SecretStore], normally the encrypted secrets table.
package auth
