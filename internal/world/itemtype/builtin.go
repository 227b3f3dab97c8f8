package itemtype

// Идентификаторы встроенного каталога
const (
	// Земля
	SandID     ID = 231
	MountainID ID = 919
	GrassID    ID = 4526
	WaterID    ID = 4608

	// Бордюры земли
	GrassBorderID ID = 4542
	SandBorderID  ID = 4632

	// Always-on-top предметы
	LadderID   ID = 1386
	WallLampID ID = 5112

	// Обычные предметы
	TableID    ID = 1614
	BagID      ID = 1987
	VialID     ID = 2006
	GoldCoinID ID = 2148
	ShovelID   ID = 2554

	// Предметы с дополнительными данными
	TeleportID ID = 1387
	DoorID     ID = 1209
	DepotID    ID = 2594
)
