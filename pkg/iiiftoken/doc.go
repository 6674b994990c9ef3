// Package iiiftoken issues and verifies the short-lived signed tokens that
// authorize IIIF image requests.
//
// A token is two unpadded base64url segments joined by a single dot: the
// JSON encoded Payload and the HMAC-SHA256 of that first segment. With the
// default DerivationSite the secret matches the host application's, so
// either side can verify tokens the other issued. Tokens are stateless;
// nothing is stored server side and nonces are not tracked.
//
//	secret := iiiftoken.NewSecretSource(loadKey, salt)
//	codec := iiiftoken.NewCodec(secret, clock.Real())
//	issuer := codec.NewIssuer(iiiftoken.DefaultTTL)
//	token, err := issuer.Issue("hdb", "wdb/hdb/doc1/1.ptif", 42)
//	payload, err := codec.Verify(token)
package iiiftoken
