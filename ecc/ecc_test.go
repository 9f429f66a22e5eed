package ecc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maurocanuto/mempack/ecc"
)

func TestPlanGroups(t *testing.T) {
	groups := ecc.Plan(ecc.Params{K: 4, M: 2}, 10)
	require.Len(t, groups, 3)
	assert.Equal(t, []uint32{0, 1, 2, 3}, groups[0].BlockIDs)
	assert.Equal(t, []uint32{4, 5, 6, 7}, groups[1].BlockIDs)
	assert.Equal(t, []uint32{8, 9}, groups[2].BlockIDs)
}

func shardOf(n int, fill byte) []byte {
	s := make([]byte, n)
	for i := range s {
		s[i] = fill
	}
	return s
}

func TestEncodeAndRepairSingleLoss(t *testing.T) {
	params := ecc.Params{K: 4, M: 2}
	data := [][]byte{shardOf(128, 1), shardOf(128, 2), shardOf(128, 3), shardOf(128, 4)}
	parity, err := ecc.Encode(params, data)
	require.NoError(t, err)
	require.Len(t, parity, params.M*128)

	shards := make([][]byte, params.K+params.M)
	copy(shards, data)
	shards[params.K] = parity[:128]
	shards[params.K+1] = parity[128:]

	lost := shards[1]
	shards[1] = nil
	err = ecc.Repair(params.K, params.M, shards)
	require.NoError(t, err)
	assert.Equal(t, lost, shards[1])
}

func TestRepairUnrecoverable(t *testing.T) {
	params := ecc.Params{K: 4, M: 2}
	data := [][]byte{shardOf(64, 1), shardOf(64, 2), shardOf(64, 3), shardOf(64, 4)}
	parity, err := ecc.Encode(params, data)
	require.NoError(t, err)

	shards := make([][]byte, params.K+params.M)
	copy(shards, data)
	shards[params.K] = parity[:64]
	shards[params.K+1] = parity[64:]

	// Lose 3 shards (more than M=2 parity can cover).
	shards[0] = nil
	shards[1] = nil
	shards[2] = nil
	err = ecc.Repair(params.K, params.M, shards)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, ecc.Params{K: 4, M: 2}.Validate())
	assert.Error(t, ecc.Params{K: 0, M: 2}.Validate())
	assert.Error(t, ecc.Params{K: 4, M: 0}.Validate())
}
