package depdb

import (
	"encoding/base64"
	"strings"

	"github.com/coreos/go-semver/semver"
	sri "github.com/peterebden/go-sri"
	"github.com/zeebo/blake3"
)

// A Chain drives a Depdb through the ordered invalidation-chain steps spec
// §4.G step 3 and §6 describe for the compile rule (and, generalized, any
// dyndep rule): rule-id/version, compiler checksum, options checksum,
// source path, then one line per discovered dependency. Each step goes
// through Depdb.Expect, so a mismatch at any position discards everything
// recorded after it — a compiler-checksum change invalidates an
// already-matching options checksum and every header line that followed
// it, exactly per spec §4.F's "first mismatch forces a recompute and
// truncates the rest".
type Chain struct {
	db      *Depdb
	changed bool
}

// NewChain wraps db for building or validating an invalidation chain.
func NewChain(db *Depdb) *Chain { return &Chain{db: db} }

// Changed reports whether any step driven through this Chain so far has
// mismatched the stored chain (including the depdb having been freshly
// created, i.e. there was no stored chain at all).
func (c *Chain) Changed() bool { return c.changed }

func (c *Chain) step(line string) error {
	prev, err := c.db.Expect(line)
	if err != nil {
		return err
	}
	// A mismatch returns the stored line; running past the end of the
	// stored chain returns nil but leaves the depdb writing.
	if prev != nil || c.db.Mode() == ModeWriting {
		c.changed = true
	}
	return nil
}

// RuleVersion writes or validates the "<rule-id> <version>" header line.
// Unlike every other step, this one does not use Expect's literal string
// comparison: a stored version that is lower than the registered one
// forces recompute (exactly like a checksum mismatch), but a stored
// version that is equal-or-newer is accepted even if its textual
// rendering differs cosmetically, per SPEC_FULL's generalization of spec
// §4.G step 3.1 from an opaque integer to a real semver.
func (c *Chain) RuleVersion(ruleID string, version semver.Version) error {
	want := ruleID + " " + version.String()
	if c.db.Mode() == ModeWriting {
		c.changed = true
		return c.db.ForceWrite(want)
	}
	stored, ok := c.db.NextStored()
	if !ok {
		c.changed = true
		return c.db.ForceWrite(want)
	}
	parts := strings.SplitN(stored, " ", 2)
	if len(parts) != 2 || parts[0] != ruleID {
		c.changed = true
		return c.db.ForceWrite(want)
	}
	storedVer, err := semver.NewVersion(parts[1])
	if err != nil || storedVer.LessThan(version) {
		c.changed = true
		return c.db.ForceWrite(want)
	}
	c.db.Accept(stored)
	return nil
}

// checksumLine formats data's blake3 digest as a Subresource-Integrity
// style "algo-base64digest" string (SPEC_FULL §4: "human-greppable,
// self-describing hash algorithm tag"), so the same line can later be
// re-verified with VerifyChecksum without this package needing to decode
// its own format back out.
func checksumLine(data []byte) string {
	sum := blake3.Sum256(data)
	return "blake3-" + base64.StdEncoding.EncodeToString(sum[:])
}

// Checksum drives a single generic checksum step. CompilerChecksum and
// OptionsChecksum are named wrappers around it for the compile rule's fixed
// chain shape; a rule whose chain records more or differently-named
// digests (spec §6's ad-hoc buildscript chain: prerequisite-set hash,
// target-set hash, program-checksum, environment-checksum) drives each one
// through this directly, in the order spec §6 lists them.
func (c *Chain) Checksum(data []byte) error {
	return c.step(checksumLine(data))
}

// CompilerChecksum drives the compiler-identity step (spec §4.G step 3.2:
// "covers compiler identity and default target").
func (c *Chain) CompilerChecksum(data []byte) error {
	return c.Checksum(data)
}

// OptionsChecksum drives the options step (spec §4.G step 3.3: poptions,
// system include dirs, coptions, language standard, -fPIC on ELF shared
// variants, all folded into one digest by the caller before this is
// called).
func (c *Chain) OptionsChecksum(data []byte) error {
	return c.Checksum(data)
}

// Path drives a plain path line: the source path (spec §4.G step 3.4) or
// one discovered dependency path (step 3.5).
func (c *Chain) Path(p string) error {
	return c.step(p)
}

// VerifyChecksum re-hashes data against a previously-recorded
// "algo-base64digest" checksum line, delegating the algorithm-tagged
// comparison to go-sri's Checker rather than this package parsing the tag
// itself. Grounded on please's remote-cache artifact verification
// (src/remote/impl_test.go: sri.NewChecker(tag), Write, Check).
func VerifyChecksum(line string, data []byte) error {
	checker, err := sri.NewChecker(line)
	if err != nil {
		return err
	}
	if _, err := checker.Write(data); err != nil {
		return err
	}
	return checker.Check()
}
