package auth

import "testing"

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"event":"success","data":{"rows":[]}}`)
	sig := SignHMAC("secret", body)

	if !VerifyHMAC("secret", body, sig) {
		t.Fatal("expected signature to verify")
	}
	if VerifyHMAC("other", body, sig) {
		t.Fatal("signature verified with wrong secret")
	}
	if VerifyHMAC("secret", []byte(`{}`), sig) {
		t.Fatal("signature verified for different body")
	}
	if VerifyHMAC("secret", body, "not-hex") {
		t.Fatal("malformed signature accepted")
	}
}
