package server

// Server объединяет специфичные HTTP сервера, отвечающие за обработку конкретных сущностей
type Server struct {
	DealServer
}

func NewServer(
	dealServer DealServer,
) Server {
	return Server{
		DealServer: dealServer,
	}
}
