// Package secure keeps operator-supplied secrets, such as registrar
// passwords typed into 'pidops login', in a memguard enclave until they are
// handed to a credential store.
//
//	buf, err := secure.ReadLine(os.Stdin)
//	if err != nil {
//	    return err
//	}
//	defer buf.Destroy()
//
//	locked, err := buf.Open()
//	if err != nil {
//	    return err
//	}
//	defer locked.Destroy()
//
// The enclave is encrypted at rest and its plaintext is only exposed in a
// locked buffer, so it is not written to swap or core dumps while pidops
// waits on the keyring.
package secure
