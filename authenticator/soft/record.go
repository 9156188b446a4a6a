package soft

import (
	"encoding/base64"

	"github.com/foretell-app/foretell/provider/kv"
	"github.com/fxamacker/cbor/v2"
)

// credentialRecord is a resident credential, as persisted in the KV
type credentialRecord struct {
	ID          []byte `cbor:"id"`
	RPID        string `cbor:"rpId"`
	UserHandle  []byte `cbor:"userHandle"`
	UserName    string `cbor:"userName"`
	DisplayName string `cbor:"displayName"`
	LargeBlob   bool   `cbor:"largeBlob"`
	Created     int64  `cbor:"created"`
	SignCount   uint32 `cbor:"signCount"`
}

// sealedBlob is a large blob encrypted with a single-use key derived from Salt
type sealedBlob struct {
	Salt []byte `cbor:"salt"`
	Data []byte `cbor:"data"`
}

type store struct {
	db     kv.KV
	prefix string
}

func encodeID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}

func (s *store) credentialKey(id []byte) string {
	return s.prefix + "cred:" + encodeID(id)
}

func (s *store) blobKey(id []byte) string {
	return s.prefix + "blob:" + encodeID(id)
}

func (s *store) indexKey() string {
	return s.prefix + "index"
}

func (s *store) get(key string, dest interface{}) (bool, error) {
	data, err := s.db.Get(key)
	if err != nil || data == nil {
		return false, err
	}
	if err = cbor.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *store) set(key string, v interface{}) error {
	data, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Set(key, data)
}

func (s *store) index() ([][]byte, error) {
	var ids [][]byte
	if _, err := s.get(s.indexKey(), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *store) credential(id []byte) (*credentialRecord, error) {
	result := &credentialRecord{}
	found, err := s.get(s.credentialKey(id), result)
	if err != nil || !found {
		return nil, err
	}
	return result, nil
}

// credentials returns the stored credentials, oldest first
func (s *store) credentials() ([]*credentialRecord, error) {
	ids, err := s.index()
	if err != nil {
		return nil, err
	}
	result := make([]*credentialRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.credential(id)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (s *store) addCredential(rec *credentialRecord) error {
	if err := s.set(s.credentialKey(rec.ID), rec); err != nil {
		return err
	}
	ids, err := s.index()
	if err != nil {
		return err
	}
	return s.set(s.indexKey(), append(ids, rec.ID))
}

func (s *store) updateCredential(rec *credentialRecord) error {
	return s.set(s.credentialKey(rec.ID), rec)
}

func (s *store) blob(id []byte) (*sealedBlob, error) {
	result := &sealedBlob{}
	found, err := s.get(s.blobKey(id), result)
	if err != nil || !found {
		return nil, err
	}
	return result, nil
}

func (s *store) setBlob(id []byte, blob *sealedBlob) error {
	return s.set(s.blobKey(id), blob)
}
