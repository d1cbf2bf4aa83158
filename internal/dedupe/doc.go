// Package dedupe provides a small in-memory window for spotting repeated work.
//
// The proxy gateway hashes each submission (target URL plus payload) with Key
// and calls Claim before forwarding it. A second identical submission inside
// the window is rejected; if forwarding fails the key is released with Forget
// so the visitor can retry right away.
//
//	c := dedupe.New(30*time.Second, 10000)
//	defer c.Close()
//
//	key := dedupe.Key([]byte(url), payload)
//	if !c.Claim(key) {
//	    // duplicate
//	}
//
// The cache is process-local. Several gateway replicas each keep their own
// window.
package dedupe
