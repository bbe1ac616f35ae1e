// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

/*
Package registrar keeps privileged accounts consistent across the privileged
("admins") and general ("users") collections.

Every operation writes the privileged mirror first and the general mirror
second, as two commits. The store offers no transaction across the two, so the
outcome is reported explicitly:

	res, err := reg.Create(ctx, registrar.CreateInput{Email: "ops@example.com"})
	switch {
	case err != nil:
	    // nothing written (validation, lookup or first-mirror failure)
	case res.Outcome == registrar.OutcomePartialFailure:
	    // admins written, users not: res.Partial names both mirrors
	}

Role labels from either collection are normalized to admin or super_admin
before storage; unknown labels become admin. Emails are stored lower-cased and
must be unique in the general collection.
*/
package registrar
