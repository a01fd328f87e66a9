// Package fakes provides test doubles for the external clients pidops
// credential stores talk to.
//
// Fakes are hand-written rather than generated so tests control failures
// precisely:
//
//	kr := fakes.NewFakeKeyring()
//	kr.SetPair("pidops", "ezid_creds", "apitest", "apitest")
//	store := credentials.NewKeyringStoreWithClient("default", "pidops", kr)
package fakes
