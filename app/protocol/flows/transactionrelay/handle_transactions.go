package transactionrelay

import (
	"github.com/gxcnet/gxcpeerd/app/appmessage"
	peerpkg "github.com/gxcnet/gxcpeerd/app/protocol/peer"
	"github.com/gxcnet/gxcpeerd/domain/chainstore"
	"github.com/pkg/errors"
)

// TransactionRequestsContext is the interface for the context needed for
// the HandleGetTransaction flow.
type TransactionRequestsContext interface {
	ChainStore() *chainstore.ChainStore
}

// HandleGetTransaction answers a request for a confirmed transaction by
// hash, or with an error message if it is unknown
func HandleGetTransaction(context TransactionRequestsContext, peer *peerpkg.Peer,
	message *appmessage.MsgGetTransaction) error {

	tx, height, err := context.ChainStore().TransactionByHash(message.Hash)
	if err != nil {
		if errors.Is(err, chainstore.ErrTransactionNotFound) {
			log.Debugf("%s requested unknown transaction %s", peer, message.Hash)
			return peer.Enqueue(appmessage.NewMsgError(appmessage.ErrorCodeNotFound,
				"transaction "+message.Hash+" not found"))
		}
		return err
	}
	log.Debugf("Sending transaction %s from block %d to %s", tx.Hash, height, peer)
	return peer.Enqueue(appmessage.NewMsgTransaction(tx))
}

// HandleTransaction records a transaction a peer sent. The node keeps no
// mempool, so transactions are only logged.
func HandleTransaction(peer *peerpkg.Peer, message appmessage.Message) {
	var hash string
	switch message := message.(type) {
	case *appmessage.MsgNewTransaction:
		if message.Tx != nil {
			hash = message.Tx.Hash
		}
	case *appmessage.MsgTransaction:
		if message.Tx != nil {
			hash = message.Tx.Hash
		}
	}
	log.Debugf("Received %s %s from %s", message.Command(), hash, peer)
}
