// Package gates implements the security gate pipeline: seven ordered checks
// (SAST, secret detection, dependency audit, CUI marking, SBOM, supply-chain
// pinning, signature) run concurrently against an asset version's content
// snapshot.
//
// The aggregate verdict passes only when every required gate passes. Policy is
// zero tolerance: any critical/high SAST finding, any detected secret, any
// critical/high CVE, or any missing CUI marking fails the pipeline. SBOM and
// supply-chain gates apply only to executable asset types; other types record
// not_applicable. A gate that cannot run (tool unavailable, timeout) records
// an error verdict, which blocks approval but is distinguished from fail in
// reporting.
//
// Scanners are pluggable through the Scanner interface; the builtin reference
// scanners are pattern-based and load their rules from a YAML file with
// hot-reload.
package gates
