package reactorecho

type ConnectedCallbackFunc func(TCPConnection)
type DisConnectedCallbackFunc func(TCPConnection)

type messageCallbackFunc func(conn *tcpConnection, msg []byte)
type closeCallbackFunc func(conn *tcpConnection)

func defaultDisConnectedCallback(tc TCPConnection) {
	// just do nothing
}

func defaultConnectedCallback(tc TCPConnection) {
	// just do nothing
}

func defaultMessageCallback(conn *tcpConnection, msg []byte) {
	// just do nothing
}

func defaultCloseCallback(conn *tcpConnection) {
	// just do nothing
}
