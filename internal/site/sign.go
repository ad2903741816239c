package site

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
)

// SignPoints digests (appid, openid, amount, secret) in that order. The
// secret never leaves the process; the site recomputes the digest from its
// copy. Pure function of its inputs so it can be verified offline.
// The site API contract carries no nonce or timestamp, so the digest alone
// does not prevent replay; see DESIGN.md.
func SignPoints(appID, openID string, amount int64, secret string) string {
	sum := md5.Sum([]byte(appID + openID + strconv.FormatInt(amount, 10) + secret))
	return hex.EncodeToString(sum[:])
}

// SignProfile digests (appid, openid, secret) for the read-only profile
// query.
func SignProfile(appID, openID, secret string) string {
	sum := md5.Sum([]byte(appID + openID + secret))
	return hex.EncodeToString(sum[:])
}
