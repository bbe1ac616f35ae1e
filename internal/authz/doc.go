// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

// Package authz derives the permission sets of administrative roles using
// Casbin.
//
// The embedded model is plain RBAC with role inheritance:
//
//	m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
//
// and the embedded policy grants admin read access to live views, presence and
// alerts plus account writes, while super_admin inherits admin and adds account
// deletion, bulk updates and full control of the admins collection.
//
// Permissions(role) flattens the implicit rules into sorted "object:action"
// strings; the registrar stores them on every AdminAccount it writes.
//
//	e, err := authz.NewEnforcer(nil)
//	perms := e.Permissions("super_admin")
//	// [accounts:bulk accounts:delete accounts:read accounts:write admins:* ...]
//
// A policy file may replace the embedded policy via EnforcerConfig.PolicyPath.
package authz
